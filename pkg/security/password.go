package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/stockledger/pkg/config"
	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash signals a malformed Argon2id hash string.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// ArgonParams are the Argon2id settings encoded into every access hash.
type ArgonParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

func (p ArgonParams) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
}

// HashPassword returns the PHC-formatted Argon2id hash stored in
// STOCKLEDGER_ACCESS_PASSWORD_HASH.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	params := ParamsFromConfig(cfg)
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Time, params.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(params.key(password, salt)),
	), nil
}

// VerifyPassword reports whether password matches encoded. Parameters come
// from the hash, so rotating the config does not invalidate an existing hash.
func VerifyPassword(password, encoded string) (bool, error) {
	params, salt, want, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want, params.key(password, salt)) == 1, nil
}

// ParamsFromConfig clamps the configured settings to sane bounds.
func ParamsFromConfig(cfg config.PasswordConfig) ArgonParams {
	return ArgonParams{
		Memory:      uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		Time:        uint32(clamp(cfg.ArgonTime, 1, 10)),
		Parallelism: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		SaltLen:     uint32(clamp(cfg.ArgonSaltLen, 8, 64)),
		KeyLen:      uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}
}

// decodeHash parses $argon2id$v=19$m=..,t=..,p=..$salt$hash.
func decodeHash(encoded string) (ArgonParams, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}

	var params ArgonParams
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Parallelism); err != nil {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}
	if params.Memory == 0 || params.Time == 0 || params.Parallelism == 0 {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil || len(hash) == 0 {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}
	params.SaltLen = uint32(len(salt))
	params.KeyLen = uint32(len(hash))
	return params, salt, hash, nil
}

func clamp(value, lo, hi int) int {
	return max(lo, min(value, hi))
}
