package solr

// batchPlan partitions n records into ceil(n/size) half-open index ranges,
// preserving input order. Concatenating the ranges reconstructs 0..n.
func batchPlan(n, size int) [][2]int {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = 1
	}

	plan := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		plan = append(plan, [2]int{start, end})
	}
	return plan
}
