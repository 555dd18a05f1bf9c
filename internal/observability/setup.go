package observability

import (
	"context"

	"github.com/mkasongo/kembo-wallet/internal/infrastructure/observability"
)

func Setup(serviceName string) func(context.Context) error {
	observability.InitLogger()
	observability.InitMetrics()
	return observability.InitTracing(serviceName)
}
