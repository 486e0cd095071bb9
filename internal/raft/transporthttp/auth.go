package transporthttp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

const tokenTTL = time.Minute

var ErrUnauthorized = errors.New("peer token rejected")

// PeerClaims identifies the member that signed a peer RPC.
type PeerClaims struct {
	MemberIndex int `json:"member_index"`
	jwt.RegisteredClaims
}

// Authenticator signs outgoing peer RPCs and checks incoming ones with a
// shared cluster secret (HMAC-SHA256).
type Authenticator struct {
	secret []byte
	self   int
}

func NewAuthenticator(secret string, self int) *Authenticator {
	return &Authenticator{secret: []byte(secret), self: self}
}

func (a *Authenticator) Sign() (string, error) {
	now := time.Now()
	claims := PeerClaims{
		MemberIndex: a.self,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chunkdir",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a bearer token and returns the signer's claims.
func (a *Authenticator) Verify(token string) (*PeerClaims, error) {
	claims := &PeerClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("chunkdir"))
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, types.ErrorResponse{ErrCode: "unauthorized", ErrMsg: "missing bearer token"})
			return
		}
		if _, err := a.Verify(token); err != nil {
			writeJSON(w, http.StatusUnauthorized, types.ErrorResponse{ErrCode: "unauthorized", ErrMsg: err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}
