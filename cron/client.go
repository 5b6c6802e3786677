// Package cron implements the external tick-notification side of the
// program scheduler (§6): the generated /etc/cron.d entries' lifecycle
// and the small collector that turns a cron client's connection into a
// decoded wake notification.
package cron

// NotificationSize is the fixed frame cron clients send: a cookie
// followed by the target program's object id (§6: "a 6-byte {cookie:
// u32, program_id: u16} struct").
const NotificationSize = 6

// Notification is one decoded cron wake frame.
type Notification struct {
	Cookie    uint32
	ProgramID uint16
}

// Client accumulates one Notification across however many non-blocking
// reads its connection takes to deliver 6 bytes, mirroring the original
// collector's accept-once/read-until-complete contract: a cron
// connection is good for exactly one notification, then it disconnects.
type Client struct {
	buf  [NotificationSize]byte
	used int
}

// Feed appends newly read bytes and reports the decoded Notification once
// a full frame has accumulated.
func (c *Client) Feed(data []byte) (Notification, bool) {
	n := copy(c.buf[c.used:], data)
	c.used += n
	if c.used < NotificationSize {
		return Notification{}, false
	}
	return Notification{
		Cookie:    uint32(c.buf[0]) | uint32(c.buf[1])<<8 | uint32(c.buf[2])<<16 | uint32(c.buf[3])<<24,
		ProgramID: uint16(c.buf[4]) | uint16(c.buf[5])<<8,
	}, true
}
