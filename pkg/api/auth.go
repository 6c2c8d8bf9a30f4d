package api

// ReasonTwoFactorRequired is returned in the error payload of /auth/login
// when the account has TOTP enabled and no one-time code was supplied
const ReasonTwoFactorRequired = "2fa_required"

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"` // одноразовый код, только если включена 2FA
}

// TokenData представляет данные ответа на успешный логин
type TokenData struct {
	Token string `json:"token"`
}

// AddTwoFactorData содержит TOTP секрет для отображения пользователю
type AddTwoFactorData struct {
	TOTPSecret string `json:"totp_secret"`
}

// VerifyTwoFactorRequest отправляет одноразовый код для подтверждения 2FA
type VerifyTwoFactorRequest struct {
	OTP string `json:"otp"`
}

// VerifyTwoFactorData сообщает принял ли сервер код
type VerifyTwoFactorData struct {
	Valid bool `json:"valid"`
}

// VerifyEmailRequest подтверждает email по токену из письма
type VerifyEmailRequest struct {
	UUID string `json:"uuid"`
}

// ChangePasswordRequest меняет пароль текущего пользователя
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	Password    string `json:"password"`
}

// ChangeUsernameRequest меняет имя текущего пользователя
type ChangeUsernameRequest struct {
	Username string `json:"username"`
}
