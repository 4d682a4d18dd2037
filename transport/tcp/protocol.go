package tcp

// Line-oriented push protocol. Every message is a single ASCII line
// terminated by \r\n.
//
//	server -> client: INFO <text> | START <color> <fen> | STATE <fen> |
//	                  GAME_END <outcome> | ERROR <reason>
//	client -> server: MOVE <uci>
const (
	msgInfo    = "INFO"
	msgStart   = "START"
	msgState   = "STATE"
	msgGameEnd = "GAME_END"
	msgError   = "ERROR"

	cmdMove = "MOVE"

	lineTerminator = "\r\n"
)
