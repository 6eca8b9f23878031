// Package protocol implements the wire format spoken on the band's GATT endpoints:
// command and frame encoding, the shared authentication key, and the challenge cipher.
//
// Inbound notifications are framed as a 3-byte opcode followed by a payload.
// Outbound commands are opcode bytes followed by payload bytes with no delimiters;
// one transport write carries exactly one command.
package protocol
