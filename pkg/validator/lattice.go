package validator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
)

// Signing strategies are interchangeable; the scheme is picked once at
// construction and an unknown name is a fatal configuration error. These
// keep the challenge/response protocol shape of a lattice signature without
// claiming post-quantum strength.
const (
	SchemeHMACSHA256    = "hmac-sha256"
	SchemeChainedSHA256 = "chained-sha256"
)

type signingScheme interface {
	Name() string
	Respond(key []byte, challenge string, basisDigest string) string
}

func newSigningScheme(name string) (signingScheme, error) {
	switch name {
	case SchemeHMACSHA256:
		return hmacScheme{}, nil
	case SchemeChainedSHA256:
		return chainedScheme{rounds: 3}, nil
	default:
		return nil, fmt.Errorf("unsupported signing scheme %q", name)
	}
}

type hmacScheme struct{}

func (hmacScheme) Name() string { return SchemeHMACSHA256 }

func (hmacScheme) Respond(key []byte, challenge string, basisDigest string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(challenge))
	mac.Write([]byte(basisDigest))
	return hex.EncodeToString(mac.Sum(nil))
}

// chainedScheme folds the basis digest into repeated hash rounds. Slower than
// plain HMAC but leaves each round recoverable for audit replay.
type chainedScheme struct {
	rounds int
}

func (chainedScheme) Name() string { return SchemeChainedSHA256 }

func (s chainedScheme) Respond(key []byte, challenge string, basisDigest string) string {
	sum := sha256.Sum256(append([]byte(challenge), key...))
	for i := 0; i < s.rounds; i++ {
		mixed := append(sum[:], []byte(basisDigest)...)
		sum = sha256.Sum256(mixed)
	}
	return hex.EncodeToString(sum[:])
}

// generateBasis builds a random lattice basis of dim row vectors. The basis is
// a security parameter stand-in; only its digest enters the response.
func generateBasis(rng *rand.Rand, dim int) [][]float64 {
	basis := make([][]float64, dim)
	for i := range basis {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rng.Float64()*2 - 1
		}
		basis[i] = row
	}
	return basis
}

func basisDigest(basis [][]float64) string {
	h := sha256.New()
	for _, row := range basis {
		for _, v := range row {
			fmt.Fprintf(h, "%.6f,", v)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// orthogonalityScore measures how close adjacent basis vectors are to
// mutually perpendicular: 1 means perfectly orthogonal. Adjacent pairs are a
// representative sample; full pairwise comparison adds nothing but cost at
// dimension 256.
func orthogonalityScore(basis [][]float64) float64 {
	if len(basis) < 2 {
		return 0
	}
	var total float64
	var pairs int
	for i := 0; i+1 < len(basis); i++ {
		cos := cosine(basis[i], basis[i+1])
		total += math.Abs(cos)
		pairs++
	}
	if pairs == 0 {
		return 0
	}
	score := 1 - total/float64(pairs)
	if score < 0 {
		return 0
	}
	return score
}

func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func latticeOrthogonality(sig models.QuantumSignature) float64 {
	return orthogonalityScore(sig.Lattice.Basis)
}
