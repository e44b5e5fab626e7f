package transparency

import (
	"fmt"

	"github.com/scittkit/go-scitt/cose"
)

// Receipt pairs a receipt's issuer domain with its raw COSE_Sign1 bytes.
// Receipts whose issuer could not be decoded carry a synthesized
// UnknownIssuerPrefix issuer so policy evaluation still accounts for them.
type Receipt struct {
	Issuer string
	Raw    []byte
}

// ExtractReceipts returns the receipts embedded in a transparent statement,
// in embedding order, without verifying any of them.
func ExtractReceipts(statementBytes []byte) ([]Receipt, error) {
	statement, err := cose.NewSign1MessageFromCBOR(statementBytes)
	if err != nil {
		return nil, err
	}
	return extractReceipts(statement)
}

func extractReceipts(statement *cose.Sign1Message) ([]Receipt, error) {
	embedded, err := statement.EmbeddedReceipts()
	if err != nil {
		return nil, err
	}
	if len(embedded) == 0 {
		return nil, ErrNoReceipts
	}

	receipts := make([]Receipt, 0, len(embedded))
	for i, raw := range embedded {
		issuer, err := receiptIssuer(raw)
		if err != nil {
			// The receipt may come from a system we do not understand. Tag
			// it rather than aborting so the policy pass can account for it.
			issuer = fmt.Sprintf("%s%d", UnknownIssuerPrefix, i)
		}
		receipts = append(receipts, Receipt{Issuer: issuer, Raw: raw})
	}
	return receipts, nil
}

func receiptIssuer(receiptBytes []byte) (string, error) {
	receipt, err := cose.NewSign1MessageFromCBOR(receiptBytes)
	if err != nil {
		return "", err
	}
	return receipt.IssuerFromCWTClaims()
}
