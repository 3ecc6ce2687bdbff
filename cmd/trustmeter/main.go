// Package main is the entry point for trustmeter, a pay-per-request API metering
// service that authenticates callers by wallet signature and settles usage on chain.
//
//	@title						trustmeter - Pay-per-request API metering
//	@version					1.0
//	@description				Wallet-authenticated usage metering with on-chain settlement.
//
//	@contact.name				trustmeter
//	@contact.url				https://github.com/artpar/trustmeter/issues
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@BasePath					/
//
//	@securityDefinitions.apikey	WalletAddress
//	@in							header
//	@name						X-Wallet-Address
//	@description				Wallet address of the caller
//
//	@securityDefinitions.apikey	WalletSignature
//	@in							header
//	@name						X-Wallet-Signature
//	@description				Signature of the caller's current sign-in message
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token from /api/auth/session (format: "Bearer {token}")
package main

import (
	"github.com/artpar/trustmeter/bootstrap"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	bootstrap.Version = version
	Execute()
}
