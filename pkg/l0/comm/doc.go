// Package comm provides L0 protocol support.
package comm

// L0 protocol is communicated between the tank node firmware and the host
// controller over a peer-to-peer byte stream (e.g. serial port).
//
// Every message is a fixed 22-byte frame, so there's no length parsing on
// the node side. Packet boundaries are recovered from the STX marker and
// every frame carries a CRC-16/CCITT-FALSE over its content, which catches
// bit errors and garbled reads on a noisy line.
//
// Frame layout (little-endian):
//
//	0      STX (0x02)
//	1..2   magic (31256)
//	3..6   id
//	7..10  clientId
//	11..12 opCode
//	13     pin
//	14     pinMode
//	15..18 data
//	19     ETX (0x03)
//	20..21 CRC over bytes 0..19
//
// Producer: node firmware (replies), host controller (commands)
// Consumer: both
