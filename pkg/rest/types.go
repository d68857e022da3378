// Данный файл должен быть сгенерирован из openapi спецификации и называться types.gen.go
package rest

// Deal Снапшот сделки для UI
type Deal struct {
	DealID      uint64           `json:"dealId"`
	Version     uint64           `json:"version"`
	Parties     []string         `json:"parties"`
	Offers      map[string]Offer `json:"offers"`
	AllRevealed bool             `json:"allRevealed"`
	Finalized   bool             `json:"finalized"`

	// SyncedAt Unix-время последней сверки с леджером; 0 до первой сверки
	SyncedAt int64 `json:"syncedAt"`
}

// Offer Оффер одного участника; value никогда не отдаётся наружу
type Offer struct {
	Party       string `json:"party"`
	Title       string `json:"title"`
	Terms       string `json:"terms"`
	Revealed    bool   `json:"revealed"`
	SubmittedAt int64  `json:"submittedAt"`
}

// CreateOffer Запрос на создание запечатанного оффера
type CreateOffer struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Terms string `json:"terms" validate:"required,min=10,max=4000"`
	Value uint64 `json:"value" validate:"lte=4294967295"`
}

// Error Модель ошибок
type Error struct {
	// Code Код ошибки
	Code ErrorCode `json:"code"`

	// Message Сообщение об ошибке (для отображения в UI в будущем)
	Message string `json:"message"`
}

// ErrorCode Код ошибки
type ErrorCode string
