// Package feed loads the published tally sheet.
//
// A Fetcher returns the raw CSV bytes: HTTPFetcher performs the GET against
// the configured URL, retrying network failures with truncated exponential
// backoff; FileFetcher and FetcherFunc let callers substitute a local file or
// a fake. Parse turns CSV text into a Table under a positional schema:
// column 0 is the organization, column 1 the score, whatever their headers
// say. Both header names are kept on the Table.
//
// Failures are typed: *NetworkError for anything that prevents getting a 200
// response body, *ParseError for malformed CSV or a wrong table shape.
package feed
