package lookup

import (
	"asnlookup/pkg/domain"
	"context"
)

//go:generate mockgen -package mocklookup -source=interface.go -destination=mock/mocklookup.go *
type Service interface {
	Lookup(ctx context.Context, name string) (*domain.Lookup, error)
}
