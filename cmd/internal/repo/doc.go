// Package repo provides the generic persistence plumbing shared by pulse's
// concrete stores: a CRUD template parameterized by model type, and
// transaction scoping that rides the context.
//
// Concrete repositories supply the table name, id column, SQL templates,
// and argument binders; row mapping uses pgx struct scanning over `db` tags.
//
// Transaction discipline: ExecuteInTransaction begins a transaction and
// stashes it in the context; every statement issued through Querier inside
// fn runs on that same connection. Nested calls collapse into the outer
// transaction and must not commit independently; only the outermost call
// commits or rolls back.
package repo
