package feed

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"novafeed/domain"
)

type cursorPayload struct {
	Offset int `json:"o"`
}

func encodeCursor(offset int) string {
	raw, _ := json.Marshal(cursorPayload{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: bad cursor encoding", domain.ErrInvalidRequest)
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Offset < 0 {
		return 0, fmt.Errorf("%w: bad cursor payload", domain.ErrInvalidRequest)
	}
	return p.Offset, nil
}
