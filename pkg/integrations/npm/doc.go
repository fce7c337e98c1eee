// Package npm fetches package metadata and source tarballs from an npm
// registry.
//
// # Usage
//
//	client := npm.NewClient(redisCache, npm.MetadataTTL)
//	meta, err := client.FetchMetadata(ctx, "@expo/vector-icons", false)
//
// Metadata is requested in the abbreviated install format and cached under
// "registryMetadata/<name>". A 404 is reported as PACKAGE_NOT_FOUND, timeouts
// as TIMEOUT, and every other failure as NETWORK_ERROR.
package npm
