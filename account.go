package doci

import (
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account identifiers are bech32-encoded secp256k1 key fingerprints.
// Users hold "frons..." accounts; the gateway service key encodes as "fronss...".
const (
	AccountHRP = "frons"
	ServiceHRP = "fronss"
)

func pubkeyFingerprint(pubkey []byte) []byte {
	// uncompressed pubkey starts with 0x04; fingerprint matches the
	// ethereum address derivation over the remaining 64 bytes
	return crypto.Keccak256(pubkey[1:])[12:]
}

func EncodeAccount(hrp string, pubkey []byte) (string, error) {
	if len(pubkey) != 65 || pubkey[0] != 0x04 {
		return "", fmt.Errorf("invalid uncompressed public key")
	}
	return bech32.ConvertAndEncode(hrp, pubkeyFingerprint(pubkey))
}

// PrivKeyToAccount derives the bech32 account for a hex-encoded secp256k1
// private key.
func PrivKeyToAccount(privHex string, hrp string) (string, error) {
	key, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return "", err
	}
	return EncodeAccount(hrp, crypto.FromECDSAPub(&key.PublicKey))
}

// SignBytes signs keccak256(data) and returns a 65-byte recoverable signature.
func SignBytes(data []byte, privHex string) ([]byte, error) {
	key, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(crypto.Keccak256(data), key)
}

// RecoverAccount recovers the signer account of a SignBytes signature.
func RecoverAccount(data []byte, sig []byte, hrp string) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("invalid signature length: %d", len(sig))
	}
	pubkey, err := crypto.SigToPub(crypto.Keccak256(data), sig)
	if err != nil {
		return "", err
	}
	return EncodeAccount(hrp, crypto.FromECDSAPub(pubkey))
}

// VerifySign checks that sig over data was produced by the key behind account.
func VerifySign(data []byte, sig []byte, account string) error {
	hrp, _, err := bech32.DecodeAndConvert(account)
	if err != nil {
		return fmt.Errorf("invalid account: %v", err)
	}
	recovered, err := RecoverAccount(data, sig, hrp)
	if err != nil {
		return err
	}
	if recovered != account {
		return fmt.Errorf("signature does not match account")
	}
	return nil
}

func IsAccountID(s string) bool {
	hrp, data, err := bech32.DecodeAndConvert(s)
	return err == nil && hrp == AccountHRP && len(data) == 20
}

func IsServiceID(s string) bool {
	hrp, data, err := bech32.DecodeAndConvert(s)
	return err == nil && hrp == ServiceHRP && len(data) == 20
}
