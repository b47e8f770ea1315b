package jwt

type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
}

type Claims struct {
	Issuer         string `json:"iss"` // account of the signer
	Subject        string `json:"sub"`
	Audience       string `json:"aud"` // gateway fqdn
	ExpirationTime string `json:"exp"`
	IssuedAt       string `json:"iat"`
	JWTID          string `json:"jti,omitempty"`
}
