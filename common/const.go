package common

// JSON-RPC method names served by the daemon.
const (
	MethodVersion        = "system.getVersion"
	MethodWishAdd        = "wish.add"
	MethodWishRemove     = "wish.remove"
	MethodWishList       = "wish.list"
	MethodWishMoveUp     = "wish.moveUp"
	MethodWishToggleHeld = "wish.toggleHeld"
	MethodWishSetName    = "wish.setFileName"
	MethodQueueNext      = "queue.next"
	MethodQueueClear     = "queue.clear"
	MethodNetState       = "net.state"
	MethodNetSetPolicy   = "net.setPolicy"
	MethodHistoryList    = "history.list"
)

// Server push notifications sent over the WebSocket endpoint.
const (
	NotifyQueueChanged = "queue.changed"
	NotifyNetChanged   = "net.changed"
)

// HTTP endpoints of the daemon.
const (
	PathJSONRPC   = "/jsonrpc"
	PathWebSocket = "/ws"
)
