package templates

// VerificationCodeData holds variables for the auth.verification_code scenario.
type VerificationCodeData struct {
	Name    string
	Code    string
	Minutes int
}

var VerificationCode = Expect[VerificationCodeData]("auth.verification_code")

// PasswordResetCodeData holds variables for a numeric password reset code.
type PasswordResetCodeData struct {
	Name    string
	Code    string
	Minutes int
}

var PasswordResetCode = Expect[PasswordResetCodeData]("auth.password_reset_code")

// PasswordResetLinkData holds variables for an emailed password reset link.
type PasswordResetLinkData struct {
	Name    string
	Link    string
	Minutes int
}

var PasswordResetLink = Expect[PasswordResetLinkData]("auth.password_reset_link")
