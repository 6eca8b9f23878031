package protocol

import "strings"

// Inbound auth-channel opcodes
var (
	OpSetKeyAck     = Opcode{0x10, 0x01, 0x01}
	OpChallenge     = Opcode{0x10, 0x02, 0x01}
	OpAuthenticated = Opcode{0x10, 0x03, 0x01}
	OpAuthFailed    = Opcode{0x10, 0x03, 0x08}
)

// Outbound command prefixes
var (
	CmdRequestChallenge = [...]byte{0x02, 0x00}
	CmdAuthResponse     = [...]byte{0x03, 0x00}
	CmdEnableHeartRate  = [...]byte{0x15, 0x02, 0x01}
	CmdHeartRatePing    = [...]byte{0x16}
	CmdVibrate          = [...]byte{0x03}
)

// AlertCategory is the leading byte of a notification message
// (Bluetooth Alert Notification category IDs plus the vendor "custom" category).
type AlertCategory byte

const (
	CategorySimple         AlertCategory = 0x00
	CategoryEmail          AlertCategory = 0x01
	CategoryNews           AlertCategory = 0x02
	CategoryCall           AlertCategory = 0x03
	CategoryMissedCall     AlertCategory = 0x04
	CategorySMS            AlertCategory = 0x05
	CategoryVoiceMail      AlertCategory = 0x06
	CategorySchedule       AlertCategory = 0x07
	CategoryHighPriority   AlertCategory = 0x08
	CategoryInstantMessage AlertCategory = 0x09
	CategoryCustom         AlertCategory = 0xfa
)

var categoryNames = map[string]AlertCategory{
	"simple":    CategorySimple,
	"email":     CategoryEmail,
	"news":      CategoryNews,
	"call":      CategoryCall,
	"missed":    CategoryMissedCall,
	"sms":       CategorySMS,
	"voicemail": CategoryVoiceMail,
	"schedule":  CategorySchedule,
	"high":      CategoryHighPriority,
	"im":        CategoryInstantMessage,
	"custom":    CategoryCustom,
}

// ParseAlertCategory resolves a category by its short name (case-insensitive).
func ParseAlertCategory(name string) (AlertCategory, bool) {
	c, ok := categoryNames[strings.ToLower(name)]
	return c, ok
}

// EncodeNotification builds a notification message: category byte followed by
// the UTF-8 text. Invalid UTF-8 sequences are replaced with U+FFFD.
func EncodeNotification(category AlertCategory, text string) []byte {
	return EncodeCommand([]byte{byte(category)}, []byte(strings.ToValidUTF8(text, "\uFFFD")))
}

// EncodeAuthResponse builds the handshake response: the response prefix followed by ciphertext.
func EncodeAuthResponse(ciphertext []byte) []byte {
	return EncodeCommand(CmdAuthResponse[:], ciphertext)
}
