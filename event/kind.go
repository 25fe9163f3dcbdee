package event

// Kind is the closed enumeration of nostr event kinds this module knows
// about. Unrecognized kind numbers are still valid Events (the protocol is
// open-ended); Kind is just a documented uint16, not a sealed type.
type Kind uint16

const (
	SetMetadata    Kind = 0
	TextNote       Kind = 1
	RecommendRelay Kind = 2
	Contacts       Kind = 3
	// EncryptedDirectMessage content is either absent (plaintext held in
	// EncryptedDirectMessage.CleartextContent) or the NIP-04 payload from
	// key.Pair.Encrypt.
	EncryptedDirectMessage Kind = 4
	Delete                 Kind = 5
	Boost                  Kind = 6
	Reaction               Kind = 7

	ChannelCreate        Kind = 40
	ChannelMetadata      Kind = 41
	ChannelMessage       Kind = 42
	ChannelHideMessage   Kind = 43
	ChannelMuteUser      Kind = 44
	RelayListMetadata    Kind = 10002
)
