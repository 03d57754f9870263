package asm

// Helper registry: symbolic helper names, their call numbers, and the
// kernel release that introduced them. Numbers come from the kernel's
// helper enum and never change once assigned.

// Helper describes one kernel helper function.
type Helper struct {
	Name      string
	Num       int32
	MinKernel string
}

var helpers = map[string]Helper{
	"map_lookup_elem":        {"map_lookup_elem", 1, "3.19"},
	"map_update_elem":        {"map_update_elem", 2, "3.19"},
	"map_delete_elem":        {"map_delete_elem", 3, "3.19"},
	"probe_read":             {"probe_read", 4, "4.1"},
	"ktime_get_ns":           {"ktime_get_ns", 5, "4.1"},
	"trace_printk":           {"trace_printk", 6, "4.1"},
	"get_prandom_u32":        {"get_prandom_u32", 7, "4.1"},
	"get_smp_processor_id":   {"get_smp_processor_id", 8, "4.1"},
	"skb_store_bytes":        {"skb_store_bytes", 9, "4.1"},
	"l3_csum_replace":        {"l3_csum_replace", 10, "4.1"},
	"l4_csum_replace":        {"l4_csum_replace", 11, "4.1"},
	"tail_call":              {"tail_call", 12, "4.2"},
	"clone_redirect":         {"clone_redirect", 13, "4.2"},
	"get_current_pid_tgid":   {"get_current_pid_tgid", 14, "4.2"},
	"get_current_uid_gid":    {"get_current_uid_gid", 15, "4.2"},
	"get_current_comm":       {"get_current_comm", 16, "4.2"},
	"get_cgroup_classid":     {"get_cgroup_classid", 17, "4.3"},
	"skb_vlan_push":          {"skb_vlan_push", 18, "4.3"},
	"skb_vlan_pop":           {"skb_vlan_pop", 19, "4.3"},
	"skb_get_tunnel_key":     {"skb_get_tunnel_key", 20, "4.3"},
	"skb_set_tunnel_key":     {"skb_set_tunnel_key", 21, "4.3"},
	"perf_event_read":        {"perf_event_read", 22, "4.3"},
	"redirect":               {"redirect", 23, "4.4"},
	"get_route_realm":        {"get_route_realm", 24, "4.4"},
	"perf_event_output":      {"perf_event_output", 25, "4.4"},
	"skb_load_bytes":         {"skb_load_bytes", 26, "4.5"},
	"get_stackid":            {"get_stackid", 27, "4.6"},
	"csum_diff":              {"csum_diff", 28, "4.6"},
	"get_current_task":       {"get_current_task", 35, "4.8"},
	"probe_write_user":       {"probe_write_user", 36, "4.8"},
	"probe_read_str":         {"probe_read_str", 45, "4.11"},
	"get_socket_cookie":      {"get_socket_cookie", 46, "4.12"},
	"get_socket_uid":         {"get_socket_uid", 47, "4.12"},
	"redirect_map":           {"redirect_map", 51, "4.14"},
	"sk_redirect_map":        {"sk_redirect_map", 52, "4.14"},
	"get_stack":              {"get_stack", 67, "4.18"},
	"map_push_elem":          {"map_push_elem", 87, "4.20"},
	"map_pop_elem":           {"map_pop_elem", 88, "4.20"},
	"map_peek_elem":          {"map_peek_elem", 89, "4.20"},
	"spin_lock":              {"spin_lock", 93, "5.1"},
	"spin_unlock":            {"spin_unlock", 94, "5.1"},
	"probe_read_user":        {"probe_read_user", 112, "5.5"},
	"probe_read_kernel":      {"probe_read_kernel", 113, "5.5"},
	"probe_read_user_str":    {"probe_read_user_str", 114, "5.5"},
	"probe_read_kernel_str":  {"probe_read_kernel_str", 115, "5.5"},
	"ringbuf_output":         {"ringbuf_output", 130, "5.8"},
	"ringbuf_reserve":        {"ringbuf_reserve", 131, "5.8"},
	"ringbuf_submit":         {"ringbuf_submit", 132, "5.8"},
	"ringbuf_discard":        {"ringbuf_discard", 133, "5.8"},
	"ringbuf_query":          {"ringbuf_query", 134, "5.8"},
	"get_current_task_btf":   {"get_current_task_btf", 158, "5.11"},
	"ktime_get_coarse_ns":    {"ktime_get_coarse_ns", 160, "5.11"},
	"get_current_ancestor_cgroup_id": {"get_current_ancestor_cgroup_id", 123, "5.6"},
	"send_signal":            {"send_signal", 109, "5.3"},
	"send_signal_thread":     {"send_signal_thread", 117, "5.5"},
}

// LookupHelper resolves a helper name to its call number.
func LookupHelper(name string) (int32, bool) {
	h, ok := helpers[name]
	return h.Num, ok
}

// HelperInfo returns the full registry entry for a helper name.
func HelperInfo(name string) (Helper, bool) {
	h, ok := helpers[name]
	return h, ok
}
