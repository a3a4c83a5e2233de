package validation

// Registration checks name, email and password for a new principal. strong
// adds the letter-and-digit rule to the password.
func Registration(minPassword, maxPassword int, strong bool) RuleSet {
	return NewRuleSet(
		NewField("name").Trimmed().Required().MinLength(2).MaxLength(100),
		NewField("email").Trimmed().Required().Email().MaxLength(120),
		newPassword("password", minPassword, maxPassword, strong),
	)
}

// Login checks that both credentials are present and the email is well formed.
func Login() RuleSet {
	return NewRuleSet(
		NewField("email").Trimmed().Required().Email(),
		NewField("password").Required(),
	)
}

// PasswordChange checks the current and new passwords.
func PasswordChange(minPassword, maxPassword int, strong bool) RuleSet {
	return NewRuleSet(
		NewField("old_password").Required(),
		newPassword("new_password", minPassword, maxPassword, strong),
	)
}

func newPassword(name string, minLen, maxLen int, strong bool) Field {
	f := NewField(name).Required().MinLength(minLen).MaxLength(maxLen)
	if strong {
		f = f.PasswordStrength()
	}
	return f
}
