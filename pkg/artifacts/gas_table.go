package artifacts

// CreateGas is the fixed per-artifact gas budget for contract deployment.
// Estimation does not work for creates on the mirror, so each artifact gets
// a budget sized from observed deployments with headroom.
var CreateGas = map[string]uint64{
	"LAZYTokenCreator":     650_000,
	"LazyGasStation":       1_600_000,
	"LazyDelegateRegistry": 1_200_000,
	"PrngSystemContract":   350_000,
	"LazyLottoStorage":     2_400_000,
	"LazyLotto":            5_800_000,
	"LazyLottoPoolManager": 3_200_000,
	"LazyTradeLotto":       2_800_000,
}

// DefaultCreateGas is used when an artifact has no entry in the table.
const DefaultCreateGas uint64 = 4_000_000

// CreateGasFor returns the deployment budget for an artifact name.
func CreateGasFor(name string) uint64 {
	if g, ok := CreateGas[name]; ok {
		return g
	}
	return DefaultCreateGas
}
