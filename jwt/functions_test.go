package jwt

import (
	"encoding/hex"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fronsciers/doci-gateway"
)

func TestCreateValidateRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	privHex := hex.EncodeToString(crypto.FromECDSA(key))

	account, err := doci.PrivKeyToAccount(privHex, doci.AccountHRP)
	if err != nil {
		t.Fatalf("account derivation failed: %v", err)
	}

	token, err := Create(Claims{
		Issuer:         account,
		Subject:        "doci",
		Audience:       "gateway.fronsciers.example",
		ExpirationTime: strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
		IssuedAt:       strconv.FormatInt(time.Now().Unix(), 10),
	}, privHex)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	header, claims, err := Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if header.Algorithm != "DOCI1" {
		t.Fatalf("unexpected algorithm: %s", header.Algorithm)
	}
	if claims.Issuer != account {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	key, _ := crypto.GenerateKey()
	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	account, _ := doci.PrivKeyToAccount(privHex, doci.AccountHRP)

	token, err := Create(Claims{
		Issuer:         account,
		Subject:        "doci",
		Audience:       "gateway.fronsciers.example",
		ExpirationTime: strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10),
	}, privHex)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := Validate(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestValidateRejectsForgedIssuer(t *testing.T) {
	key, _ := crypto.GenerateKey()
	privHex := hex.EncodeToString(crypto.FromECDSA(key))

	other, _ := crypto.GenerateKey()
	otherAccount, _ := doci.PrivKeyToAccount(hex.EncodeToString(crypto.FromECDSA(other)), doci.AccountHRP)

	// claims name an account the signing key does not control
	token, err := Create(Claims{
		Issuer:   otherAccount,
		Subject:  "doci",
		Audience: "gateway.fronsciers.example",
	}, privHex)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := Validate(token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
}
