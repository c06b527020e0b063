// Package http provides the HTTP client used to fetch site assets.
//
// This package handles:
//   - Connection pooling sized for the loader's concurrency
//   - GET requests returning the body with its content type
//   - Optional retry of server errors with exponential backoff
//   - Mapping of non-success statuses to typed errors
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    MaxIdleConnsPerHost: 8,
//	    Timeout:             30 * time.Second,
//	})
//
//	resp, err := client.Get(ctx, url)
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
//	// resp.ContentType holds the Content-Type header
//
// Retries are off by default. Set RetryAttempts to retry 5xx responses and
// transport failures; 4xx responses are never retried.
package http
