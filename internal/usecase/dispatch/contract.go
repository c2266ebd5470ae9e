package dispatch

import "github.com/docuchat/contextpipe/internal/backend"

// AdapterSelector resolves enabled backend ids to adapters in priority order.
type AdapterSelector interface {
	Select(ids []backend.ID) ([]backend.Adapter, error)
}
