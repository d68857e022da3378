package ledger

import (
	"errors"
	"testing"

	"git.appkode.ru/pub/go/failure"
	"github.com/stretchr/testify/require"

	"secret_deal/internal/domain"
	"secret_deal/pkg/errcodes"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		revert string
		code   failure.ErrorCode
	}{
		{"duplicate submit", "execution reverted: Offer already submitted", errcodes.AlreadySubmitted},
		{"duplicate submit short form", "execution reverted: already submitted", errcodes.AlreadySubmitted},
		{"duplicate reveal", "execution reverted: Offer already revealed", errcodes.AlreadyRevealed},
		{"reveal without offer", "execution reverted: No offer submitted", errcodes.Unauthorized},
		{"foreign offer", "execution reverted: Not the offer owner", errcodes.Unauthorized},
		{"outsider", "execution reverted: Not a deal party", errcodes.Unauthorized},
		{"early finalize", "execution reverted: Not all offers revealed", errcodes.PreconditionFailed},
		{"empty finalize", "execution reverted: No offers to finalize", errcodes.PreconditionFailed},
		{"double finalize", "execution reverted: Deal already finalized", errcodes.PreconditionFailed},
		{"unknown deal", "execution reverted: Deal does not exist", errcodes.DealNotFound},
		{"network failure", "connection refused", errcodes.TransactionFailed},
		{"unknown revert", "execution reverted: something else", errcodes.TransactionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rq := require.New(t)

			cause := errors.New(tt.revert)
			err := classify(cause, "submitOffer")

			rq.True(domain.CodeIs(err, tt.code))
			rq.ErrorIs(err, cause)
		})
	}
}
