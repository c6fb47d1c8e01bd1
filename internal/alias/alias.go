package alias

import (
	"errors"
	"time"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

var ErrUnresolved = errors.New("reserve label not recognised")

// Alias maps a free-text label, as written on a stock sheet, to a reserve.
type Alias struct {
	RawPattern  string
	ReserveType reserve.Type
	CreatedAt   time.Time
}
