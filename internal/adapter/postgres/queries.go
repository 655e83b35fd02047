package postgres

// queryTableNames lists base tables in the public schema.
const queryTableNames = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = 'public'
		AND table_type = 'BASE TABLE'
	ORDER BY table_name`

// queryColumns fetches column definitions for one table. udt_name is needed
// to resolve enum types; the data_type for those reads 'USER-DEFINED'.
// $1 = table_name.
const queryColumns = `
	SELECT
		c.column_name,
		c.data_type,
		c.is_nullable = 'YES',
		COALESCE(c.column_default, ''),
		c.udt_name,
		COALESCE(pg_catalog.col_description(
			(quote_ident(c.table_schema) || '.' || quote_ident(c.table_name))::regclass,
			c.ordinal_position
		), '')
	FROM information_schema.columns c
	WHERE c.table_schema = 'public' AND c.table_name = $1
	ORDER BY c.ordinal_position`

// queryEnumValues fetches the labels of a user-defined enum type in
// declaration order. $1 = udt_name.
const queryEnumValues = `
	SELECT e.enumlabel
	FROM pg_enum e
	JOIN pg_type t ON e.enumtypid = t.oid
	WHERE t.typname = $1
	ORDER BY e.enumsortorder`
