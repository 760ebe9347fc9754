package auth

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/base64"
    "encoding/json"
    "errors"
    "strings"
    "time"
)

var (
    b64 = base64.RawURLEncoding

    ErrTokenExpired = errors.New("token expired")
)

// SignHS256 creates a compact JWT string using HS256.
func SignHS256(claims map[string]any, secret []byte) (string, error) {
    header := map[string]string{"alg": "HS256", "typ": "JWT"}
    h, err := json.Marshal(header)
    if err != nil { return "", err }
    c, err := json.Marshal(claims)
    if err != nil { return "", err }
    unsigned := b64.EncodeToString(h) + "." + b64.EncodeToString(c)
    return unsigned + "." + b64.EncodeToString(mac(unsigned, secret)), nil
}

// ParseAndVerifyHS256 verifies the signature and expiry and returns the claims.
func ParseAndVerifyHS256(token string, secret []byte, now time.Time) (map[string]any, error) {
    parts := strings.Split(token, ".")
    if len(parts) != 3 { return nil, errors.New("invalid token format") }
    header, err := b64.DecodeString(parts[0])
    if err != nil { return nil, errors.New("invalid header encoding") }
    var hdr struct{ Alg string `json:"alg"` }
    if err := json.Unmarshal(header, &hdr); err != nil || hdr.Alg != "HS256" {
        return nil, errors.New("unsupported token algorithm")
    }
    sigBytes, err := b64.DecodeString(parts[2])
    if err != nil { return nil, errors.New("invalid signature encoding") }
    if !hmac.Equal(sigBytes, mac(parts[0]+"."+parts[1], secret)) { return nil, errors.New("signature mismatch") }
    payload, err := b64.DecodeString(parts[1])
    if err != nil { return nil, errors.New("invalid payload encoding") }
    var claims map[string]any
    if err := json.Unmarshal(payload, &claims); err != nil { return nil, errors.New("invalid claims json") }
    exp, ok := claims["exp"].(float64)
    if !ok { return nil, errors.New("missing exp claim") }
    if now.Unix() >= int64(exp) { return nil, ErrTokenExpired }
    return claims, nil
}

func mac(unsigned string, secret []byte) []byte {
    m := hmac.New(sha256.New, secret)
    m.Write([]byte(unsigned))
    return m.Sum(nil)
}
