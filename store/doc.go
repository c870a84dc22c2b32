// Package store provides a schema-less entity table over DynamoDB.
//
// Every table is keyed by a two-part primary key: PartitionKey groups related
// records and RowKey identifies a record within its partition. Everything else
// is a dynamic field bag whose cell types follow the JSON values that wrote
// them, so the same Store serves customers, products, orders and any future
// entity kind without per-kind code.
//
// # Key Features
//
//   - JSON objects in, typed cells out ([ParseFields])
//   - Create-if-absent tables ([Store.EnsureTable])
//   - Insert that never overwrites ([Store.Add], [Store.Insert])
//   - Merge updates with optimistic locking on a version token
//     ([Store.Update], [Store.Replace])
//   - Idempotent deletes ([Store.Delete])
//
// # Cell Types
//
//	string        → String
//	number        → Int32, Int64 or Double
//	true / false  → Bool
//	null          → Null
//	array, object → String (compact JSON text)
//
// # Optimistic Locking
//
// Every write stores a new version. [Store.Replace] only succeeds when the
// record's Version still matches the stored one:
//
//	rec, _ := s.Get(ctx, "Orders", customerID, orderID)
//	rec.Fields["Status"] = store.StringValue("Shipped")
//	err := s.Replace(ctx, "Orders", rec) // ErrConcurrentModification if stale
//
// # Errors
//
//   - [ErrInvalidEntity] - malformed payload or missing key part
//   - [ErrNotFound] - no record for the key
//   - [ErrAlreadyExists] - insert on an existing key
//   - [ErrConcurrentModification] - optimistic lock failed
package store
