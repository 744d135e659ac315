package cartridge

// Error is a cartridge program failure. Its numeric value is the code
// reported in receipts and is part of the wire contract.
type Error uint32

const (
	ErrInvalidSystemProgram        Error = 0
	ErrDeserialization             Error = 1
	ErrSerialization               Error = 2
	ErrInvalidAssetProgram         Error = 3
	ErrInvalidName                 Error = 4
	ErrInvalidURI                  Error = 5
	ErrPayerMustSign               Error = 6
	ErrAuthorityMustSign           Error = 7
	ErrInvalidMachinePdaDerivation Error = 8
	ErrCartridgeOwnerMustSign      Error = 9
	ErrInvalidGamePdaDerivation    Error = 10
	ErrCartridgeAlreadyInserted    Error = 11
	ErrCartridgeNotInserted        Error = 12
)

var errorMessages = [...]string{
	ErrInvalidSystemProgram:        "Invalid System Program",
	ErrDeserialization:             "Error deserializing account",
	ErrSerialization:               "Error serializing account",
	ErrInvalidAssetProgram:         "Invalid Asset Program",
	ErrInvalidName:                 "Invalid Name",
	ErrInvalidURI:                  "Invalid URI",
	ErrPayerMustSign:               "Payer must sign",
	ErrAuthorityMustSign:           "Authority must sign",
	ErrInvalidMachinePdaDerivation: "Invalid Machine PDA Derivation",
	ErrCartridgeOwnerMustSign:      "Cartridge Owner must sign",
	ErrInvalidGamePdaDerivation:    "Invalid Game PDA Derivation",
	ErrCartridgeAlreadyInserted:    "A cartridge is already inserted into the machine",
	ErrCartridgeNotInserted:        "A cartridge is not inserted into the machine",
}

func (e Error) Error() string {
	if int(e) < len(errorMessages) {
		return errorMessages[e]
	}
	return "unknown cartridge error"
}

// Code returns the numeric error code.
func (e Error) Code() uint32 { return uint32(e) }
