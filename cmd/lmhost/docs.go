package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           lmhost API
// @version         1.0
// @description     HTTP API for language model sessions: prompt, stream, append, clone and quota accounting.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
