// Package redisstore holds the Redis-backed pieces of the token broker: the
// pending-authorization store, the access-token cache and the refresh lock.
// Together they let several replicas share one authorization flow and
// collapse refreshes across processes.
package redisstore
