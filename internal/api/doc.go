// Package api provides the client for the market-data source.
//
// The source serves one opening value per trading day as plain text:
//   - GET {base}/YYYY/MM/DD returns e.g. "12479.63"
//   - Days without a value yet return 404, or a body starting with "error"
//
// Default endpoint: http://geo.crox.net/djia
package api
