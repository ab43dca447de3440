package ports

import (
	"context"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

// RunStorage persiste los resultados de cada simulación.
type RunStorage interface {
	// SaveRun persists a completed run: summary row plus all marks, in
	// one transaction.
	SaveRun(ctx context.Context, run domain.RunRecord) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
