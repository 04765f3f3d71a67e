package browser

import "ignetwork/pkg/auth"

func testAccount() *auth.Account {
	return &auth.Account{Username: "collector", Password: "secret"}
}
