package resolver

import "errors"

var (
	ErrScriptNotFound   = errors.New("resolver: script not found")
	ErrResolveUndefined = errors.New("resolver: script does not define resolve()")
	ErrInvalidResult    = errors.New("resolver: resolve() returned an invalid handler")
)
