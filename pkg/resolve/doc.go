/*
The resolve package turns the `sync` and `mount` sections of the configuration
into a plan of rsync invocations.

Every sync entry maps a local pattern to one or more remote patterns. Patterns
may contain shell-style brace alternations, so `~/{docs,code}` names both
`~/docs` and `~/code`. After expansion:

1) Local paths name a single file or directory. A trailing slash, which would
   mean "the contents of this directory", is rejected.
2) Remote paths name the directory that the local path is placed in, so they
   must end with a slash.

Each (local path, remote directory) combination becomes a Unit. Units are
filtered by the remote prefixes the user selected, and grouped into one Batch
per destination directory. The remote directories of the selected units
determine which mounts must be attached before transferring.

Trailing slashes are significant throughout the package and are preserved by
Normalize.

Nothing in this package performs transfers or mounts, and nothing logs.
*/
package resolve
