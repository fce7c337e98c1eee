package externals

// DefaultDefinition is the runtime contract of the current session host.
//
// To update: add new host-provided native modules to Packages (or a family to
// Families) in the same change that ships them in the runtime.
var DefaultDefinition = Definition{
	Version: "2024.1",
	Core: []string{
		"@react-native/assets-registry",
		"expo",
		"expo-asset",
		"expo-constants",
		"expo-file-system",
		"expo-font",
		"expo-modules-core",
		"react",
		"react-dom",
		"react-native",
		"react-native-web",
	},
	Packages: []string{
		"@expo/vector-icons",
		"@react-native-async-storage/async-storage",
		"@react-native-picker/picker",
		"lottie-react-native",
		"react-native-gesture-handler",
		"react-native-maps",
		"react-native-pager-view",
		"react-native-reanimated",
		"react-native-safe-area-context",
		"react-native-screens",
		"react-native-svg",
		"react-native-webview",
	},
	Families: []string{
		`^expo-`,
		`^@expo/`,
		`^@unimodules/`,
		`^@react-native-community/`,
	},
	Ignored: []string{
		"react-native-windows",
		"react-native-macos",
		"react-native-tvos",
	},
	IgnoredFamilies: []string{
		`^@types/`,
	},
	Aliases: map[string]string{
		"react-native-vector-icons": "@expo/vector-icons",
	},
}

// Default returns the compiled default policy.
func Default() *Policy {
	return MustNew(DefaultDefinition)
}
