package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dmfellows/bidstreet-backend/api/responses"
	gatewaywebhook "github.com/dmfellows/bidstreet-backend/internal/webhooks/gateway"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
)

type gatewayWebhookService interface {
	HandleEvent(ctx context.Context, event *gatewaywebhook.Event) error
}

type signingSecretProvider interface {
	SigningSecret() string
}

const signatureHeader = "X-Gateway-Signature"

// GatewayWebhook verifies and reconciles payment gateway deliveries.
// Missing signature maps to 400, mismatch to 403; duplicates and
// already-applied transitions acknowledge with 200.
func GatewayWebhook(svc gatewayWebhookService, secrets signingSecretProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if secrets == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := gatewaywebhook.VerifySignature(secrets.SigningSecret(), payload, r.Header.Get(signatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event gatewaywebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode gateway event"))
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
