package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           nnevald API
// @version         1.0
// @description     HTTP API for batched neural-network chess position evaluation.
//
// @contact.name   nnevald maintainers
// @contact.url    https://github.com/your-org/nnevald
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
