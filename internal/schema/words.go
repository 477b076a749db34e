package schema

// DMAWord is one 128-bit word exchanged with the host.
type DMAWord struct {
	Data Uint128
	Last bool
}

// TcpReplyWord is one segment word of a TCP reply payload.
// User bit 0 flags a checksum error; ID carries the session.
type TcpReplyWord struct {
	Data Uint128
	Keep uint16
	User uint32
	ID   uint32
	Last bool
}
