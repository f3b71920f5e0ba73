package a

import "os"

const tokenSecret = "hunter2" // want `hardcoded secret in tokenSecret`

var apiKey = "not matched by name"

var emptySecret = ""

type settings struct {
	SigningSecretKey string
	Name             string
}

func load() settings {
	secret := "inline" // want `hardcoded secret in secret`

	s := settings{
		SigningSecretKey: "literal", // want `hardcoded secret in SigningSecretKey`
		Name:             "shop",
	}
	s.SigningSecretKey = "again" // want `hardcoded secret in SigningSecretKey`
	s.SigningSecretKey = os.Getenv("TOKEN_SIGNING_SECRET_KEY")
	_ = secret
	_ = apiKey
	_ = emptySecret
	return s
}
