package transparency

import (
	"net/http"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/scittkit/go-scitt/jwks"
)

// UnknownIssuerPrefix tags receipts whose issuer could not be decoded. The
// synthesized issuer is "__unknown-issuer::<index>"; such receipts can never
// be authorized and authorized domain lists drop any entry carrying the
// prefix.
const UnknownIssuerPrefix = "__unknown-issuer::"

// AuthorizedReceiptBehavior specifies how receipts whose issuer domains ARE
// in the authorized list are enforced.
type AuthorizedReceiptBehavior int

const (
	// VerifyAnyMatching requires at least one receipt from any authorized
	// domain to be present and valid.
	VerifyAnyMatching AuthorizedReceiptBehavior = iota

	// VerifyAllMatching requires every receipt whose issuer is in the
	// authorized list to pass verification.
	VerifyAllMatching

	// RequireAll requires at least one valid receipt for each domain in the
	// authorized list.
	RequireAll
)

func (b AuthorizedReceiptBehavior) String() string {
	switch b {
	case VerifyAnyMatching:
		return "verify-any-matching"
	case VerifyAllMatching:
		return "verify-all-matching"
	case RequireAll:
		return "require-all"
	default:
		return "unknown"
	}
}

// UnauthorizedReceiptBehavior specifies the treatment of receipts whose
// issuer domains are not in the authorized list.
type UnauthorizedReceiptBehavior int

const (
	// VerifyAll verifies receipts even when their issuer domain is not in
	// the authorized list.
	VerifyAll UnauthorizedReceiptBehavior = iota

	// IgnoreAll skips verification of receipts whose issuer domain is not
	// in the authorized list.
	IgnoreAll

	// FailIfPresent fails verification immediately if any receipt exists
	// whose issuer domain is not authorized. The scan happens before any
	// signature verification; a single unauthorized receipt rejects the
	// whole statement, including otherwise valid authorized receipts.
	FailIfPresent
)

func (b UnauthorizedReceiptBehavior) String() string {
	switch b {
	case VerifyAll:
		return "verify-all"
	case IgnoreAll:
		return "ignore-all"
	case FailIfPresent:
		return "fail-if-present"
	default:
		return "unknown"
	}
}

// OfflineKeysBehavior specifies the use of offline keys.
type OfflineKeysBehavior int

const (
	// FallbackToNetwork uses offline keys when available and falls back to
	// network retrieval when no offline key set exists for an issuer.
	FallbackToNetwork OfflineKeysBehavior = iota

	// NoFallbackToNetwork uses only offline keys. Verification fails for
	// any issuer without a configured offline key set.
	NoFallbackToNetwork
)

func (b OfflineKeysBehavior) String() string {
	switch b {
	case FallbackToNetwork:
		return "fallback-to-network"
	case NoFallbackToNetwork:
		return "no-fallback-to-network"
	default:
		return "unknown"
	}
}

// VerificationOptions controls transparent statement verification. The
// options are read-only for the duration of one verification call.
type VerificationOptions struct {
	// AuthorizedDomains lists the issuer domains trusted by the caller.
	// Domains are matched case-insensitively.
	AuthorizedDomains []string

	// AuthorizedReceiptBehavior is the enforcement applied to receipts from
	// authorized domains.
	AuthorizedReceiptBehavior AuthorizedReceiptBehavior

	// UnauthorizedReceiptBehavior is the treatment of receipts from domains
	// outside the authorized list.
	UnauthorizedReceiptBehavior UnauthorizedReceiptBehavior

	// OfflineKeys maps issuer domains to key set documents for offline
	// verification. It is never mutated.
	OfflineKeys jwks.OfflineKeys

	// OfflineKeysBehavior selects whether missing offline keys fall back to
	// a network fetch.
	OfflineKeysBehavior OfflineKeysBehavior

	// HTTPClient is used for key set fetches when network fallback applies.
	// Timeout and retry policy belong to this client. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Log, when set, receives debug logging from the key resolution path.
	Log logger.Logger
}

// DefaultVerificationOptions returns the default policy: verify all receipts
// from authorized domains, reject the statement on the presence of any
// unauthorized receipt, fall back to the network when offline keys are
// missing.
func DefaultVerificationOptions() *VerificationOptions {
	return &VerificationOptions{
		AuthorizedReceiptBehavior:   VerifyAllMatching,
		UnauthorizedReceiptBehavior: FailIfPresent,
		OfflineKeysBehavior:         FallbackToNetwork,
	}
}
