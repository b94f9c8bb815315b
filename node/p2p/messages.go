package p2p

const (
	CmdVersion = "version"
	CmdVerack  = "verack"

	CmdInv      = "inv"
	CmdGetData  = "getdata"
	CmdNotFound = "notfound"
	CmdTx       = "tx"
	CmdPing     = "ping"
	CmdPong     = "pong"
)
