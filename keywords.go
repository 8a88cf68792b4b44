package rvbridge

// ExtensionKeyword 标记请求来自本适配器的关键字
const ExtensionKeyword = "gmext"

// MediationConfig 聚合框架传入的广告请求配置
type MediationConfig struct {
	Location *Location
}

// ContainsPII 配置中是否带有个人信息
func ContainsPII(cfg MediationConfig) bool {
	return cfg.Location != nil
}

// Keywords 生成请求关键字
// intendedForPII为true时生成用户数据关键字，只有允许收集个人信息且配置带有PII时才非空；
// 否则生成普通关键字，只有配置不带PII时才非空
func Keywords(cfg MediationConfig, intendedForPII bool, canCollectPII bool) string {
	if intendedForPII {
		if canCollectPII && ContainsPII(cfg) {
			return ExtensionKeyword
		}
		return ""
	}
	if ContainsPII(cfg) {
		return ""
	}
	return ExtensionKeyword
}

// NewRequestParameters 根据聚合配置构造加载参数，位置只在允许收集个人信息时带上
func NewRequestParameters(cfg MediationConfig, canCollectPII bool) RequestParameters {
	params := RequestParameters{
		Keywords:         Keywords(cfg, false, canCollectPII),
		UserDataKeywords: Keywords(cfg, true, canCollectPII),
	}
	if canCollectPII && cfg.Location != nil {
		loc := *cfg.Location
		params.Location = &loc
	}
	return params
}
