// Package redisstore keeps sessions in Redis through go-redis.
//
// Sessions are short-lived and read on every authenticated request, which
// suits a TTL-bearing key-value store. Users stay in a durable backend;
// [storage.Combine] joins the two into one storage.Store:
//
//	store := storage.Combine(sqlStore.Users(), redisstore.NewSessionStore(client, "gs"))
package redisstore
