package redisx

import "time"

const (
	// Revoked JWTs, kept until the token itself would expire:
	// auth:blacklist:{token} -> "1"
	KeyTokenBlacklist = "auth:blacklist:%s"

	// Catalog list cache, stamped with a version so writers can
	// invalidate every cached page with one INCR:
	// catalog:list:v{n}:{filter} -> JSON response body
	KeyCatalogList = "catalog:list:v%d:%s"

	// Monotonic catalog version, bumped on add/restock/purchase.
	KeyCatalogVersion = "catalog:version"
)

var (
	TTLCatalogList = 1 * time.Minute
)
