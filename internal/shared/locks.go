package shared

import "fmt"

// DepreciationLockKey builds the redis key serializing depreciation runs of a company.
func DepreciationLockKey(companyID int64) string {
	return fmt.Sprintf("ledger:depreciation:company:%d:lock", companyID)
}
