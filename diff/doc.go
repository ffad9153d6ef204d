// Package diff generates and parses unified diffs.
//
// Output follows the standard textual format consumed by git apply and patch:
//
//	--- a/lib/login.dart
//	+++ b/lib/login.dart
//	@@ -1,3 +1,4 @@
//	 unchanged
//	-removed
//	+added
//
// New files are diffed against /dev/null. Lines lacking a trailing newline
// are marked with "\ No newline at end of file".
package diff
