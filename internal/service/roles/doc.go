// Package roles assigns directory roles on behalf of administrators.
package roles
