package service

import (
	"github.com/clinicrecords/securelink-server/internal/util"
)

// maxGenerationAttempts caps how many fresh values Issue tries when the
// store reports a collision before giving up.
const maxGenerationAttempts = 5

// TokenGenerator returns a new opaque token value.
type TokenGenerator func() (string, error)

// DefaultTokenGenerator draws 256 bits from crypto/rand.
var DefaultTokenGenerator TokenGenerator = util.GenerateToken
