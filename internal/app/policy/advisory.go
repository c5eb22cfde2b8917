package policy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/skymaintain/service-layer/internal/errors"
)

// stampField is the advisory field carrying the policy stamp.
const stampField = "policyStamp"

// StampIssuer is the issuer claim every stamp must carry.
const StampIssuer = "advisory-pipeline"

// StampedAdvisory is an advisory that passed policy-stamp verification. Raw
// retains the exact bytes received; the recorder stores them verbatim.
type StampedAdvisory struct {
	Raw      json.RawMessage
	Pipeline string
}

type stampClaims struct {
	AdvisoryDigest string `json:"advisory_sha256"`
	jwt.RegisteredClaims
}

// StampVerifier asserts that an advisory was produced by the authorized
// generation pipeline. The stamp is an HS256 token over the SHA-256 digest of
// the advisory body, so it cannot be forged without the pipeline signing key.
// Verification is deterministic and side-effect-free.
type StampVerifier struct {
	key []byte
}

// NewStampVerifier builds a verifier over the pipeline signing key.
func NewStampVerifier(key []byte) *StampVerifier {
	return &StampVerifier{key: key}
}

// Verify checks the advisory's policy stamp and returns the advisory narrowed
// as validated. An advisory without a valid stamp can never become a decision
// event.
func (v *StampVerifier) Verify(raw json.RawMessage) (StampedAdvisory, error) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return StampedAdvisory{}, errors.PolicyStamp("advisory must be a JSON object")
	}

	stamp := gjson.GetBytes(raw, stampField)
	if !stamp.Exists() || stamp.String() == "" {
		return StampedAdvisory{}, errors.PolicyStamp("advisory is missing its policy stamp")
	}

	claims := &stampClaims{}
	token, err := jwt.ParseWithClaims(stamp.String(), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.PolicyStamp("unexpected stamp signing method %q", t.Method.Alg())
		}
		return v.key, nil
	}, jwt.WithIssuer(StampIssuer))
	if err != nil {
		return StampedAdvisory{}, errors.PolicyStamp("policy stamp is invalid").WithCause(err)
	}
	if !token.Valid {
		return StampedAdvisory{}, errors.PolicyStamp("policy stamp is invalid")
	}

	digest, err := advisoryDigest(raw)
	if err != nil {
		return StampedAdvisory{}, errors.PolicyStamp("advisory body cannot be digested").WithCause(err)
	}
	if !hmac.Equal([]byte(digest), []byte(claims.AdvisoryDigest)) {
		return StampedAdvisory{}, errors.PolicyStamp("policy stamp does not match advisory content")
	}

	return StampedAdvisory{Raw: raw, Pipeline: claims.Issuer}, nil
}

// Stamp signs an advisory body with the pipeline key and returns the advisory
// with its policy stamp embedded. This is the issuing side, used by the
// generation pipeline and by tests.
func Stamp(key []byte, body map[string]any) (json.RawMessage, error) {
	stamped := make(map[string]any, len(body)+1)
	for k, val := range body {
		if k == stampField {
			continue
		}
		stamped[k] = val
	}

	bare, err := json.Marshal(stamped)
	if err != nil {
		return nil, err
	}
	digest, err := advisoryDigest(bare)
	if err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stampClaims{
		AdvisoryDigest: digest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: StampIssuer,
		},
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return nil, err
	}

	stamped[stampField] = signed
	return json.Marshal(stamped)
}

// advisoryDigest computes the hex SHA-256 of the advisory body with the stamp
// field removed. Go's map marshalling sorts keys, so the digest is stable for
// equivalent content.
func advisoryDigest(raw []byte) (string, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	delete(body, stampField)
	canonical, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
