package wishcli

import (
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/internal/history"
	"github.com/warpdl/warpq/pkg/wishlib"
)

func invoke[T any](c *Client, method string, params any) (*T, error) {
	var out T
	if err := c.call(method, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetDaemonVersion() (*common.VersionResult, error) {
	return invoke[common.VersionResult](c, common.MethodVersion, nil)
}

// Add enqueues wishes and returns how many the daemon accepted.
func (c *Client) Add(wishes ...common.WishParams) (int, error) {
	res, err := invoke[common.AddResult](c, common.MethodWishAdd, &common.AddParams{Wishes: wishes})
	if err != nil {
		return 0, err
	}
	return res.Added, nil
}

func (c *Client) Remove(uris ...string) (int, error) {
	res, err := invoke[common.RemoveResult](c, common.MethodWishRemove, &common.RemoveParams{URIs: uris})
	if err != nil {
		return 0, err
	}
	return res.Removed, nil
}

func (c *Client) List() ([]wishlib.Wish, error) {
	res, err := invoke[common.ListResult](c, common.MethodWishList, nil)
	if err != nil {
		return nil, err
	}
	return res.Wishes, nil
}

func (c *Client) MoveUp(position, steps int) (bool, error) {
	res, err := invoke[common.OKResult](c, common.MethodWishMoveUp, &common.MoveUpParams{Position: position, Steps: steps})
	if err != nil {
		return false, err
	}
	return res.OK, nil
}

func (c *Client) ToggleHeld(position int) error {
	_, err := invoke[common.OKResult](c, common.MethodWishToggleHeld, &common.PositionParams{Position: position})
	return err
}

func (c *Client) SetFileName(uri, fileName string) error {
	_, err := invoke[common.OKResult](c, common.MethodWishSetName, &common.SetFileNameParams{URI: uri, FileName: fileName})
	return err
}

// Next asks the daemon to dispatch the next eligible wish now.
func (c *Client) Next() (bool, error) {
	res, err := invoke[common.NextResult](c, common.MethodQueueNext, nil)
	if err != nil {
		return false, err
	}
	return res.Dispatched, nil
}

func (c *Client) Clear() error {
	_, err := invoke[common.OKResult](c, common.MethodQueueClear, nil)
	return err
}

func (c *Client) NetState() (*common.NetStateResult, error) {
	return invoke[common.NetStateResult](c, common.MethodNetState, nil)
}

func (c *Client) SetPolicy(p common.SetPolicyParams) (*common.NetStateResult, error) {
	return invoke[common.NetStateResult](c, common.MethodNetSetPolicy, &p)
}

func (c *Client) History(limit int) ([]history.Entry, error) {
	res, err := invoke[common.HistoryResult](c, common.MethodHistoryList, &common.HistoryParams{Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}
