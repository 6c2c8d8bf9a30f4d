package api

// AttemptRequest отправляет флаг для проверки
type AttemptRequest struct {
	Flag string `json:"flag"`
}

// AttemptData содержит результат проверки флага
type AttemptData struct {
	Correct bool `json:"correct"`
}

// TeamRequest используется для создания команды и вступления в нее
type TeamRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// ServerTimestampKey is the countdown entry holding the server clock,
// every other countdown entry is a unix timestamp in seconds
const ServerTimestampKey = "server_timestamp"
